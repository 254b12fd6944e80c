// Command agent is a terminal chat client and HTTP server for tool-using runs.
package main

func main() {
	execute()
}
