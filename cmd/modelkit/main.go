// Package main is the entry point for the modelkit CLI.
package main

func main() {
	Execute()
}
