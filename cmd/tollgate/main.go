// Package main is the entry point for Tollgate.
package main

func main() {
	Execute()
}
