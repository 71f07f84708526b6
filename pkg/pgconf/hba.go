package pgconf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pgtend/pgtend/pkg/errdefs"
)

// ConnectionType is the first field of a host-based-authentication
// record.
type ConnectionType string

const (
	ConnLocal     ConnectionType = "local"
	ConnHost      ConnectionType = "host"
	ConnHostSSL   ConnectionType = "hostssl"
	ConnHostNoSSL ConnectionType = "hostnossl"
)

// authMethods is the fixed allow-list of authentication methods.
var authMethods = map[string]bool{
	"trust":    true,
	"reject":   true,
	"md5":      true,
	"password": true,
	"gss":      true,
	"sspi":     true,
	"krb5":     true,
	"ident":    true,
	"ldap":     true,
	"radius":   true,
	"cert":     true,
	"pam":      true,
}

// dottedQuad matches a bare dotted-decimal IPv4 shape. It is
// deliberately not CIDR-aware: the positional-record grammar uses it
// only to tell an explicit netmask token apart from an auth method, and
// a stricter test would change which records parse. Known limitation.
var dottedQuad = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}$`)

// AuthOption is one key=value entry of a record's options tail. Options
// keep their input order.
type AuthOption struct {
	Name  string
	Value string
}

// AuthRecord is the canonical form of one authentication line. Address
// and IPMask are empty for local connections; IPMask is set only when
// the input carried an explicit mask token.
type AuthRecord struct {
	Type        ConnectionType
	Database    string
	User        string
	Address     string
	IPMask      string
	AuthMethod  string
	AuthOptions []AuthOption
}

// ParseAuthRecord canonicalizes a record from settings input. Records
// arrive either as a positional list of strings or as a mapping with
// canonical field names.
func ParseAuthRecord(v any) (AuthRecord, error) {
	switch rec := v.(type) {
	case AuthRecord:
		return rec, rec.Validate()
	case []any:
		fields, err := stringFields(rec)
		if err != nil {
			return AuthRecord{}, err
		}
		return parsePositional(fields, v)
	case []string:
		return parsePositional(rec, v)
	case map[string]any:
		return parseCanonical(rec, v)
	default:
		return AuthRecord{}, errdefs.NewInvalidRecord(
			fmt.Sprintf("auth record must be a list or a mapping, got %T", v), v)
	}
}

func stringFields(list []any) ([]string, error) {
	out := make([]string, len(list))
	for i, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, errdefs.NewInvalidRecord(
				fmt.Sprintf("positional auth record field %d is %T, not a string", i, e), list)
		}
		out[i] = s
	}
	return out, nil
}

func parsePositional(fields []string, raw any) (AuthRecord, error) {
	if len(fields) < 4 {
		return AuthRecord{}, errdefs.NewInvalidRecord("positional auth record needs at least 4 fields", raw)
	}

	rec := AuthRecord{
		Type:     ConnectionType(fields[0]),
		Database: fields[1],
		User:     fields[2],
	}

	switch rec.Type {
	case ConnLocal:
		rec.AuthMethod = fields[3]
		if len(fields) > 4 {
			rec.AuthOptions = parseAuthOptions(fields[4])
		}
	case ConnHost, ConnHostSSL, ConnHostNoSSL:
		if len(fields) < 5 {
			return AuthRecord{}, errdefs.NewInvalidRecord("host auth record needs an address and a method", raw)
		}
		rec.Address = fields[3]
		tail := fields[4:]
		// A dotted-quad token after the address is an explicit netmask;
		// anything else is already the auth method.
		if dottedQuad.MatchString(tail[0]) {
			if len(tail) < 2 {
				return AuthRecord{}, errdefs.NewInvalidRecord("auth record ends after netmask, method missing", raw)
			}
			rec.IPMask = tail[0]
			rec.AuthMethod = tail[1]
			tail = tail[2:]
		} else {
			rec.AuthMethod = tail[0]
			tail = tail[1:]
		}
		if len(tail) > 0 {
			rec.AuthOptions = parseAuthOptions(tail[0])
		}
	default:
		return AuthRecord{}, errdefs.NewInvalidRecord(
			fmt.Sprintf("unknown connection type %q", fields[0]), raw)
	}

	return rec, rec.Validate()
}

func parseCanonical(m map[string]any, raw any) (AuthRecord, error) {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	rec := AuthRecord{
		Type:       ConnectionType(str("connection-type")),
		Database:   str("database"),
		User:       str("user"),
		Address:    str("address"),
		IPMask:     str("ip-mask"),
		AuthMethod: str("auth-method"),
	}
	switch opts := m["auth-options"].(type) {
	case string:
		rec.AuthOptions = parseAuthOptions(opts)
	case []any:
		for _, e := range opts {
			pair, ok := e.(map[string]any)
			if !ok {
				return AuthRecord{}, errdefs.NewInvalidRecord("auth-options entries must be mappings", raw)
			}
			for k, v := range pair {
				rec.AuthOptions = append(rec.AuthOptions, AuthOption{Name: k, Value: fmt.Sprint(v)})
			}
		}
	case nil:
	default:
		return AuthRecord{}, errdefs.NewInvalidRecord(
			fmt.Sprintf("auth-options must be a string or a list, got %T", opts), raw)
	}
	return rec, rec.Validate()
}

// parseAuthOptions splits "k1=v1,k2=v2" preserving input order. A bare
// token without '=' becomes an option with an empty value.
func parseAuthOptions(s string) []AuthOption {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]AuthOption, 0, len(parts))
	for _, p := range parts {
		name, value, _ := strings.Cut(p, "=")
		out = append(out, AuthOption{Name: name, Value: value})
	}
	return out
}

// Validate checks the canonical invariants: a known connection type, a
// non-empty database, user, and method, and a method from the fixed
// allow-list.
func (r AuthRecord) Validate() error {
	switch r.Type {
	case ConnLocal, ConnHost, ConnHostSSL, ConnHostNoSSL:
	default:
		return errdefs.NewInvalidRecord(fmt.Sprintf("unknown connection type %q", r.Type), r)
	}
	if r.Database == "" || r.User == "" || r.AuthMethod == "" {
		return errdefs.NewInvalidRecord("database, user, and auth method are required", r)
	}
	if !authMethods[r.AuthMethod] {
		return errdefs.NewInvalidRecord(fmt.Sprintf("auth method %q is not allowed", r.AuthMethod), r)
	}
	return nil
}

// Format serializes the record as one tab-separated line in fixed field
// order, absent optional fields rendered empty.
func (r AuthRecord) Format() string {
	opts := make([]string, 0, len(r.AuthOptions))
	for _, o := range r.AuthOptions {
		opts = append(opts, o.Name+"="+o.Value)
	}
	fields := []string{
		string(r.Type),
		r.Database,
		r.User,
		r.Address,
		r.IPMask,
		r.AuthMethod,
		strings.Join(opts, ","),
	}
	return strings.Join(fields, "\t") + "\n"
}

// FormatAuthRecord canonicalizes and serializes a raw record in one
// step.
func FormatAuthRecord(v any) (string, error) {
	rec, err := ParseAuthRecord(v)
	if err != nil {
		return "", err
	}
	return rec.Format(), nil
}
