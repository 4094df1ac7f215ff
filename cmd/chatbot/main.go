package main

import (
	"os"

	"github.com/spf13/cobra"

	chatcmder "github.com/remacdev/chatbot/cmd/chatbot/chat"
	servecmder "github.com/remacdev/chatbot/cmd/chatbot/serve"
)

const rootLongDesc string = `Chat against a locally hosted generate endpoint.

The serve command runs the web UI; the chat command opens a terminal
conversation against the same endpoint. Both read chatbot.toml, a local
.env, and CHATBOT_-prefixed environment variables.`

func main() {
	root := &cobra.Command{
		Use:          "chatbot",
		Short:        "Chat with a locally hosted model",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	root.AddCommand(servecmder.NewServeCmd())
	root.AddCommand(chatcmder.NewChatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
