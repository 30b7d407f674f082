// Package uniuri generates random strings from crypto/rand for generated passwords
// and development secrets.
package uniuri
