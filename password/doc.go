// Package password hashes and verifies principal passwords with Argon2id.
//
// Hashes use PHC string encoding ($argon2id$v=...$m=...,t=...,p=...$salt$hash)
// so parameters travel with the hash and verification never depends on the
// current configuration. The engine treats hashing as a one-way collaborator:
// nothing in the token lifecycle reads a password back.
package password
