package main

import "github.com/vibast-solutions/ms-go-gocardless-payments/cmd"

func main() {
	cmd.Execute()
}
