package main

import (
	_ "github.com/joho/godotenv/autoload"

	"velicia/cmd"
)

func main() {
	cmd.Execute()
}
