package expect

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/user/dialogtest/internal/launcher"
)

func TestMain(m *testing.M) {
	launcher.Register("greeter", func([]string) int {
		fmt.Println("Enter name:")
		name, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		fmt.Printf("Hello, %s\n", strings.TrimSpace(name))
		fmt.Fprintln(os.Stderr, "warning: greeting sent")
		return 0
	})
	launcher.Dispatch()
	os.Exit(m.Run())
}
