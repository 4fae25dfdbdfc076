package launcher

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	Register("echo-args", func(args []string) int {
		for _, a := range args {
			fmt.Println(a)
		}
		return 0
	})
	Register("exit", func(args []string) int {
		code, _ := strconv.Atoi(args[0])
		return code
	})
	Register("echo-line", func([]string) int {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		fmt.Printf("got:%s", line)
		return 0
	})
	Register("latin1", func([]string) int {
		os.Stdout.Write([]byte{'c', 'a', 'f', 0xe9, '\n'})
		return 0
	})
	Register("stderr", func(args []string) int {
		fmt.Fprintln(os.Stderr, args[0])
		return 3
	})
	Register("hang", func([]string) int {
		time.Sleep(time.Hour)
		return 0
	})
	Dispatch()
	os.Exit(m.Run())
}
