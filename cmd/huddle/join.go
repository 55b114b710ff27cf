package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huddle-dev/huddle/internal/config"
	"github.com/huddle-dev/huddle/internal/media"
	"github.com/huddle-dev/huddle/internal/roomid"
	"github.com/huddle-dev/huddle/internal/session"
	"github.com/huddle-dev/huddle/internal/tui"
	"github.com/huddle-dev/huddle/internal/ui"
)

var (
	flagDomain   string
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagName     string
	flagNoMedia  bool
)

var joinCmd = &cobra.Command{
	Use:     "join [room-id]",
	Aliases: []string{"j"},
	Short:   "Join a room, creating it if needed",
	Long: `Join a conference room. Without an argument a fresh room ID is generated;
share it so others can join the same room.

Examples:
  huddle join
  huddle join quiet-otter-42
  huddle join quiet-otter-42 --name alice --relay`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var room string
		if len(args) == 1 {
			room = roomid.Normalize(args[0])
			if !roomid.Valid(room) {
				return fmt.Errorf("invalid room ID %q", args[0])
			}
		} else {
			room = roomid.Generate()
			ui.PrintSuccessf("Created room %s", room)
		}
		return joinRoom(room)
	},
}

func joinRoom(room string) error {
	cfg, err := config.Load(config.Options{
		Domain:     flagDomain,
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
		NoMedia:    flagNoMedia,
	})
	if err != nil {
		return err
	}

	name := flagName
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "guest"
	}

	model := tui.New(name)
	mgr := session.New(cfg, media.NewSyntheticDevice(), model.Callbacks())
	model.SetSession(mgr)

	if err := mgr.JoinRoom(room, name); err != nil {
		return err
	}
	defer mgr.LeaveRoom()

	fmt.Println(ui.RoomBanner(room, cfg.WebSocketURL))

	if err := tui.Run(model); err != nil {
		return err
	}

	mgr.LeaveRoom()
	ui.RenderSummary(model.Summary())
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&flagDomain, "domain", "", "Signaling server domain")
	joinCmd.Flags().StringVar(&flagServer, "server", "", "Full signaling websocket URL")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "", "Custom STUN server")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "Custom TURN server")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVar(&flagRelay, "relay", false, "Force relayed (TURN) connectivity")
	joinCmd.Flags().StringVar(&flagName, "name", "", "Display name shown to other participants")
	joinCmd.Flags().BoolVar(&flagNoMedia, "no-media", false, "Join without microphone and camera")
}
