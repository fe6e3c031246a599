package main

import "github.com/edgeflare/autorest/cmd/autorest"

func main() {
	autorest.Main()
}
