// Command realmctl is the administrative CLI for the realm service.
package main

import "github.com/arcfs/realm/cli"

func main() {
	cli.Execute()
}
