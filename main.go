package main

import "github.com/drgolem/uacsim/cmd"

func main() {
	cmd.Execute()
}
