package main

import "hit/cmd/hit/root"

func main() {
	root.Execute()
}
