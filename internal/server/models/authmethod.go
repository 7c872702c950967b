package models

// AuthMethod is an immutable catalog entry describing how a user logs in.
// Rows are seeded by migrations; the auth core only ever reads them.
type AuthMethod struct {
	ID          string
	Name        string // immutable_method_name, e.g. EMAIL_CODE
	DisplayName string
}
