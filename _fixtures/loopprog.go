package main

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

func main() {
	if os.Getenv("_LOADER_BREAKPOINT") != "" {
		runtime.Breakpoint()
	}
	for i := 0; ; i++ {
		fmt.Println("loop", i)
		time.Sleep(100 * time.Millisecond)
	}
}
