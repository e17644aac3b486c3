package main

import "github.com/chrisdamba/menustats/cmd"

func main() {
	cmd.Execute()
}
