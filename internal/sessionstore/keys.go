package sessionstore

import "strings"

// Namespace separates the keys of an admin session from an employee session.
// A browser session holds at most one of them.
type Namespace string

const (
	NamespaceAdmin    Namespace = "admin"
	NamespaceEmployee Namespace = "employee"
)

// Namespaces lists every principal namespace.
var Namespaces = []Namespace{NamespaceAdmin, NamespaceEmployee}

func (n Namespace) Other() Namespace {
	if n == NamespaceEmployee {
		return NamespaceAdmin
	}
	return NamespaceEmployee
}

// Field is a per-principal value stored under a namespace.
type Field string

const (
	FieldAccessToken         Field = "access_token"
	FieldRefreshToken        Field = "refresh_token"
	FieldUser                Field = "user"
	FieldRememberMe          Field = "remember_me"
	FieldRememberCredentials Field = "remember_credentials"
)

var namespacedFields = []Field{
	FieldAccessToken,
	FieldRefreshToken,
	FieldUser,
	FieldRememberMe,
	FieldRememberCredentials,
}

// Key is a fully qualified session key.
type Key string

const (
	KeyManualTransactionID Key = "manual_transaction_id"
	KeyShowWelcomeToast    Key = "show_welcome_toast"
	KeyFlash               Key = "flash"
	KeyLastSeen            Key = "last_seen"
)

func (n Namespace) Key(f Field) Key {
	return Key(string(n) + "." + string(f))
}

// Keys returns every key of the namespace.
func (n Namespace) Keys() []Key {
	keys := make([]Key, 0, len(namespacedFields))
	for _, f := range namespacedFields {
		keys = append(keys, n.Key(f))
	}
	return keys
}

// PrincipalKeys returns the keys of both namespaces.
func PrincipalKeys() []Key {
	var keys []Key
	for _, n := range Namespaces {
		keys = append(keys, n.Keys()...)
	}
	return keys
}

// Field returns the per-principal field of a namespaced key.
func (k Key) Field() (Field, bool) {
	_, f, ok := strings.Cut(string(k), ".")
	return Field(f), ok
}

func namespacePrefix(ns Namespace) string {
	return string(ns) + "."
}
