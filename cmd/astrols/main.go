package main

import "github.com/kralicky/astrols/pkg/astrols"

func main() {
	astrols.Execute()
}
