package main

import (
	"github.com/Bhargav65/Silent-Byte/internal/logging"
)

func main() {
	logging.Init()
	Execute()
}
