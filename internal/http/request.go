package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mkoba/internal/core"
)

const maxBodyBytes = 64 << 10

// Headers set by the fronting identity layer.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var errBadBody = errors.New("malformed JSON body")

// session builds the caller's session from identity headers and the
// period in the URL, if any. A missing role is the least privileged one.
func session(r *http.Request) (core.Session, error) {
	sess := core.Session{
		ActorID:  strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role:     core.RoleMember,
		PeriodID: chi.URLParam(r, "periodID"),
	}
	if raw := r.Header.Get(HeaderActorRole); strings.TrimSpace(raw) != "" {
		role, err := core.ParseRole(raw)
		if err != nil {
			return core.Session{}, err
		}
		sess.Role = role
	}
	return sess, nil
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Invalid("body", fmt.Errorf("%w: %v", errBadBody, err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return core.Invalid("body", fmt.Errorf("%w: trailing data", errBadBody))
	}
	return nil
}

// parseMonth parses a required YYYY-MM value.
func parseMonth(field, s string) (core.Month, error) {
	m, err := core.ParseMonth(strings.TrimSpace(s))
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return core.Month{}, core.Invalid(field, ve.Err)
	}
	return m, err
}

// optionalMonth parses a query month, returning the zero Month if absent.
func optionalMonth(r *http.Request, field string) (core.Month, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(field))
	if raw == "" {
		return core.Month{}, nil
	}
	return parseMonth(field, raw)
}

func queryInt(r *http.Request, field string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(field))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Invalid(field, err)
	}
	return n, nil
}
