package main

import "github.com/Siri-Mahalaxmi/Aarani/cmd"

func main() {
	cmd.Execute()
}
