// The main package for the bidwatch executable.
package main

import "github.com/JakeFAU/bidwatch/cmd"

func main() {
	cmd.Execute()
}
