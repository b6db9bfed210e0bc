// envmgr is the terminal client for the environment variable platform.
package main

import "github.com/envmgr/envmgr/internal/cli"

func main() {
	cli.Execute()
}
