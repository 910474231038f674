package main

import "github.com/ShakedSchnarch/spearhead/cmd/spearctl/cmd"

func main() {
	cmd.Execute()
}
