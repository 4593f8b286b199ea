// Package users implements the directory's password store: an
// Argon2id hash per username, with a constant-shape authentication
// path so timing does not distinguish a missing user from a wrong
// password.
package users
