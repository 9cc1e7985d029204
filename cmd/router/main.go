package main

import (
	"github.com/DealAppSeo/hyperdag-router/internal/cli"
)

func main() {
	cli.Execute()
}
