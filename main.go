package main

import "github.com/kiesman99/tile_extractor/cmd"

func main() {
	cmd.Execute()
}
