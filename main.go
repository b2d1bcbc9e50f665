package main

import "slicehouse/cmd"

func main() {
	cmd.Execute()
}
