// Package main is the bizdir binary. It runs the business directory web service
// (bizdir start), administers accounts in the database (bizdir user ...) and keeps a
// client login session on the local machine (bizdir login, logout, whoami).
package main
