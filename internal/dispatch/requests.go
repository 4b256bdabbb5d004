package dispatch

// Payload is the flat set of string fields sent with an action
type Payload map[string]string

// Get returns the field or the empty string
func (p Payload) Get(name string) string {
	return p[name]
}

// Lookup returns a pointer to the field, or nil when it was not sent
func (p Payload) Lookup(name string) *string {
	v, ok := p[name]
	if !ok {
		return nil
	}
	return &v
}

// Payload field names
const (
	FieldAction      = "action"
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldOldPassword = "old_password"
	FieldNewPassword = "new_password"
	FieldToken       = "token"
	FieldCategory    = "category"
	FieldKey         = "key"
	FieldValue       = "value"
	FieldCommand     = "command"
	FieldSortOrder   = "sort_order"
)

type credentialsRequest struct {
	Username string
	Password string
}

type tokenRequest struct {
	Token string
}

type passwdRequest struct {
	Token       string
	OldPassword string
	NewPassword string
}

type getDataRequest struct {
	Token     string
	Category  string
	SortOrder string
}

type setDataRequest struct {
	Token    string
	Category string
	Key      string
	Value    *string
}

type deleteDataRequest struct {
	Token    string
	Category string
	Key      string
}

type addHistoryRequest struct {
	Token   string
	Command string
}

func decodeCredentials(p Payload) credentialsRequest {
	return credentialsRequest{Username: p.Get(FieldUsername), Password: p.Get(FieldPassword)}
}

func decodeToken(p Payload) tokenRequest {
	return tokenRequest{Token: p.Get(FieldToken)}
}

func decodePasswd(p Payload) passwdRequest {
	return passwdRequest{
		Token:       p.Get(FieldToken),
		OldPassword: p.Get(FieldOldPassword),
		NewPassword: p.Get(FieldNewPassword),
	}
}

func decodeGetData(p Payload) getDataRequest {
	return getDataRequest{
		Token:     p.Get(FieldToken),
		Category:  p.Get(FieldCategory),
		SortOrder: p.Get(FieldSortOrder),
	}
}

func decodeSetData(p Payload) setDataRequest {
	return setDataRequest{
		Token:    p.Get(FieldToken),
		Category: p.Get(FieldCategory),
		Key:      p.Get(FieldKey),
		Value:    p.Lookup(FieldValue),
	}
}

func decodeDeleteData(p Payload) deleteDataRequest {
	return deleteDataRequest{
		Token:    p.Get(FieldToken),
		Category: p.Get(FieldCategory),
		Key:      p.Get(FieldKey),
	}
}

func decodeAddHistory(p Payload) addHistoryRequest {
	return addHistoryRequest{Token: p.Get(FieldToken), Command: p.Get(FieldCommand)}
}
