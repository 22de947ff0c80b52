package main

import "github.com/perkhub/loyalty-gateway/cmd"

func main() {
	cmd.Execute()
}
