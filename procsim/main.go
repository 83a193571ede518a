// Command procsim runs process-oriented simulations from the command line.
package main

import "github.com/sarchlab/procsim/procsim/cmd"

func main() {
	cmd.Execute()
}
