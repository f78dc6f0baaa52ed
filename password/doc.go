// Package password hashes and verifies passwords with Argon2id using the
// PHC string format. Cost parameters come from engine configuration;
// scheme policy belongs to the embedder.
package password
