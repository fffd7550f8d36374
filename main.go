package main

import "github.com/iksnae/convo-console/cmd"

func main() {
	cmd.Execute()
}
