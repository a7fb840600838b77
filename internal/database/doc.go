// Package database provides the PostgreSQL connection pool used for access
// token lookups.
//
// The pool is optional: clients configured with a static, environment or
// file token never open one.
package database
