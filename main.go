package main

import "github.com/aramidnet/aramid/cmd"

func main() {
	cmd.Execute()
}
