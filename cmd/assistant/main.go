// Command rag-assistant is the interactive console of the document assistant.
package main

import "rag-assistant-go/internal/cli"

func main() {
	cli.Execute()
}
