package main

import "github.com/KaramelBytes/enrolstat/cmd"

func main() {
	cmd.Execute()
}
