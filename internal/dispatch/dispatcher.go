// Package dispatch maps action names to account, data and history
// operations and shapes their results into response envelopes.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/metrics"
	"nnoitra-backend/internal/userdata"
)

// Actions
const (
	ActionUserAdd    = "useradd"
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionValidate   = "validate"
	ActionPasswd     = "passwd"
	ActionGetData    = "get_data"
	ActionSetData    = "set_data"
	ActionDeleteData = "delete_data"
	ActionGetHistory = "get_history"
	ActionAddHistory = "add_history"
)

// aliases are alternate names older terminal clients send
var aliases = map[string]string{
	"add_user":        ActionUserAdd,
	"change_password": ActionPasswd,
}

type handlerFunc func(ctx context.Context, p Payload, client auth.ClientInfo) (Envelope, error)

// Dispatcher routes actions to their handlers
type Dispatcher struct {
	auth     *auth.Service
	store    *userdata.Store
	history  *userdata.History
	metrics  *metrics.Metrics
	log      *zap.Logger
	handlers map[string]handlerFunc
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithMetrics records every dispatched action on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = logging.OrNop(l) }
}

// New creates a dispatcher over the given services
func New(authSvc *auth.Service, store *userdata.Store, history *userdata.History, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		auth:    authSvc,
		store:   store,
		history: history,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers = map[string]handlerFunc{
		ActionUserAdd:    d.userAdd,
		ActionLogin:      d.login,
		ActionLogout:     d.logout,
		ActionValidate:   d.validate,
		ActionPasswd:     d.passwd,
		ActionGetData:    d.getData,
		ActionSetData:    d.setData,
		ActionDeleteData: d.deleteData,
		ActionGetHistory: d.getHistory,
		ActionAddHistory: d.addHistory,
	}
	return d
}

// Canonical resolves aliases. Unknown names are returned unchanged.
func Canonical(action string) string {
	if a, ok := aliases[action]; ok {
		return a
	}
	return action
}

// Dispatch runs one action. It never returns a Go error: every failure is
// reported as an error envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, p Payload, client auth.ClientInfo) Response {
	start := time.Now()
	action = Canonical(action)

	h, ok := d.handlers[action]
	if !ok {
		d.metrics.ObserveAction("unknown", StatusError, time.Since(start))
		return Response{
			Code: HTTPStatus(apperr.KindInvalidInput),
			Body: Failure("Invalid action."),
		}
	}

	body, err := h(ctx, p, client)
	resp := Response{Code: http.StatusOK, Body: body}
	if err != nil {
		resp = ErrorResponse(err)
		if apperr.KindOf(err) == apperr.KindInternal {
			d.log.Error("action failed",
				zap.String("action", action),
				zap.String("request_id", client.RequestID),
				zap.Error(err))
		} else {
			d.log.Debug("action rejected",
				zap.String("action", action),
				zap.String("request_id", client.RequestID),
				zap.String("reason", apperr.KindOf(err).String()))
		}
	}

	d.metrics.ObserveAction(action, resp.Body.Status(), time.Since(start))
	return resp
}

// principal resolves a token for the data actions without sliding it
func (d *Dispatcher) principal(ctx context.Context, token string) (auth.Principal, error) {
	return d.auth.ValidateToken(ctx, token, false)
}

func (d *Dispatcher) userAdd(ctx context.Context, p Payload, client auth.ClientInfo) (Envelope, error) {
	req := decodeCredentials(p)
	if err := d.auth.Register(ctx, req.Username, req.Password, client); err != nil {
		return nil, err
	}
	return Success(fmt.Sprintf("User %q created successfully.", req.Username)), nil
}

func (d *Dispatcher) login(ctx context.Context, p Payload, client auth.ClientInfo) (Envelope, error) {
	req := decodeCredentials(p)
	resp, err := d.auth.Login(ctx, auth.LoginRequest{Username: req.Username, Password: req.Password}, client)
	if err != nil {
		return nil, err
	}
	return Success("Login successful.").
		With("token", resp.Token).
		With("user", resp.User).
		With("expires_at", resp.ExpiresAt.Unix()), nil
}

func (d *Dispatcher) logout(ctx context.Context, p Payload, client auth.ClientInfo) (Envelope, error) {
	req := decodeToken(p)
	if err := d.auth.Logout(ctx, req.Token, client); err != nil {
		return nil, err
	}
	return Success("Logout successful."), nil
}

func (d *Dispatcher) validate(ctx context.Context, p Payload, _ auth.ClientInfo) (Envelope, error) {
	req := decodeToken(p)
	principal, err := d.auth.ValidateToken(ctx, req.Token, true)
	if err != nil {
		return nil, err
	}
	return Success("Session is valid.").
		With("user", principal.Username()).
		With("expires_at", principal.ExpiresAt()), nil
}

func (d *Dispatcher) passwd(ctx context.Context, p Payload, client auth.ClientInfo) (Envelope, error) {
	req := decodePasswd(p)
	if err := d.auth.ChangePassword(ctx, req.Token, req.OldPassword, req.NewPassword, client); err != nil {
		return nil, err
	}
	return Success("Password changed successfully."), nil
}

func (d *Dispatcher) getData(ctx context.Context, p Payload, _ auth.ClientInfo) (Envelope, error) {
	req := decodeGetData(p)
	principal, err := d.principal(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	order, err := userdata.ParseSortOrder(req.SortOrder)
	if err != nil {
		return nil, err
	}
	data, err := d.store.Get(ctx, principal.Username(), req.Category, order)
	if err != nil {
		return nil, err
	}
	return Success("").With("data", data), nil
}

func (d *Dispatcher) setData(ctx context.Context, p Payload, _ auth.ClientInfo) (Envelope, error) {
	req := decodeSetData(p)
	principal, err := d.principal(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if err := d.store.Set(ctx, principal.Username(), req.Category, req.Key, req.Value); err != nil {
		return nil, err
	}
	return Success(fmt.Sprintf("Data for category %s set.", req.Category)), nil
}

func (d *Dispatcher) deleteData(ctx context.Context, p Payload, _ auth.ClientInfo) (Envelope, error) {
	req := decodeDeleteData(p)
	principal, err := d.principal(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if err := d.store.Delete(ctx, principal.Username(), req.Category, req.Key); err != nil {
		return nil, err
	}
	return Success(fmt.Sprintf("Data for category %s at key %s deleted.", req.Category, req.Key)), nil
}

func (d *Dispatcher) getHistory(ctx context.Context, p Payload, _ auth.ClientInfo) (Envelope, error) {
	req := decodeToken(p)
	principal, err := d.principal(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	history, err := d.history.List(ctx, principal.Username())
	if err != nil {
		return nil, err
	}
	return Success("").With("history", history), nil
}

func (d *Dispatcher) addHistory(ctx context.Context, p Payload, _ auth.ClientInfo) (Envelope, error) {
	req := decodeAddHistory(p)
	principal, err := d.principal(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if err := d.history.Append(ctx, principal.Username(), req.Command); err != nil {
		return nil, err
	}
	return Success("Command added to history."), nil
}
