package main

import "github.com/derheim/helpdesk/cmd"

func main() {
	cmd.Execute()
}
