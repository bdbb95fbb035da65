// Package git reads the source revision of the project being bundled so
// artifacts can be stamped with the commit they were built from.
package git
