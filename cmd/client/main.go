package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"chatroom/internal/client"
	"chatroom/internal/protocol"
)

func main() {
	addr := flag.String("a", "127.0.0.1:11325", "chat server address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, *addr)
	cancel()
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer c.Close()

	fmt.Println(c.Banner())

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print(">")
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		denial, ok := client.Precheck(line)
		if !ok {
			if denial != "" {
				fmt.Println(denial)
			}
			continue
		}

		reply, err := c.Send(line)
		if err != nil {
			logger.Errorf("send: %v", err)
			return
		}
		fmt.Println(reply)

		if strings.Fields(line)[0] == protocol.CommandLogout {
			return
		}
	}
}
