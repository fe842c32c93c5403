// Package backend holds the immutable catalog of language-model and image
// backends. Descriptors are defined once at startup and looked up by ID;
// the registry performs no I/O and is safe for concurrent use.
package backend
