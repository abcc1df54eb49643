package main

import "facerec/cmd"

func main() {
	cmd.Execute()
}
