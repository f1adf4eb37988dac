// Package main provides the CLI entrypoint for soundmode.
package main

func main() {
	Execute()
}
