package main

import "github.com/JakeFAU/bidwatch/cmd"

func main() {
	cmd.Execute()
}
