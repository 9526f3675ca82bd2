package main

import (
	"fmt"
	"os"
	"runtime"
)

var counter int

func sayhi() {
	counter++
	fmt.Println("hi", counter)
}

func main() {
	if os.Getenv("_LOADER_BREAKPOINT") != "" {
		runtime.Breakpoint()
	}
	sayhi()
	sayhi()
}
