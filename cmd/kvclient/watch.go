package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/stream"
)

var watchCmd = &cobra.Command{
	Use:     "watch <topic>",
	Short:   "Subscribe to a topic and render published values live",
	Args:    cobra.ExactArgs(1),
	Example: "# kvclient watch alerts",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := tea.NewProgram(newWatchModel(args[0])).Run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type watchModel struct {
	topic string
	st    *streamHandle
	close func()
	subID uint32
	msgs  []string
	err   error
}

// streamHandle is a shorter name for the client-side stream instantiation
// watchModel holds.
type streamHandle = stream.Stream[kvpb.CommandResponse, kvpb.CommandRequest]

func newWatchModel(topic string) watchModel {
	return watchModel{topic: topic}
}

type subscribedMsg struct {
	st    *streamHandle
	close func()
}
type responseMsg struct{ resp kvpb.CommandResponse }
type watchErrMsg struct{ err error }

func (m watchModel) Init() tea.Cmd {
	topic := m.topic
	return func() tea.Msg {
		st, closeFn, err := dial(context.Background())
		if err != nil {
			return watchErrMsg{err}
		}
		if err := st.Send(kvpb.NewSubscribe(topic)); err != nil {
			closeFn()
			return watchErrMsg{err}
		}
		if err := st.Flush(); err != nil {
			closeFn()
			return watchErrMsg{err}
		}
		return subscribedMsg{st: st, close: closeFn}
	}
}

func recvResponse(st *streamHandle) tea.Cmd {
	return func() tea.Msg {
		resp, err := st.Recv(context.Background())
		if err != nil {
			return watchErrMsg{err}
		}
		return responseMsg{resp}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case subscribedMsg:
		m.st = msg.st
		m.close = msg.close
		return m, recvResponse(msg.st)

	case responseMsg:
		if m.subID == 0 && len(msg.resp.Values) == 1 && msg.resp.Values[0].Kind == kvpb.KindInteger {
			m.subID = uint32(msg.resp.Values[0].Integer)
			return m, recvResponse(m.st)
		}
		m.msgs = append(m.msgs, msg.resp.String())
		return m, recvResponse(m.st)

	case watchErrMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// The server never reads another request on this connection while
			// our SUBSCRIBE response channel is still open (see
			// pkg/transport's requestLoop), so there is no point sending
			// UNSUBSCRIBE here; closing the connection is what releases the
			// subscription server-side.
			if m.close != nil {
				m.close()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("watching %q", m.topic)))
	if m.subID != 0 {
		b.WriteString(" ")
		b.WriteString(idStyle.Render(fmt.Sprintf("(subscription #%d)", m.subID)))
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	for _, line := range m.msgs {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\nq: quit\n")
	return b.String()
}
