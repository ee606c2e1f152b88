package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatInput is the single-line input for the operator thread.
type ChatInput struct {
	input textinput.Model
	width int
}

// NewChatInput creates a ChatInput.
func NewChatInput() *ChatInput {
	ti := textinput.New()
	ti.Placeholder = "Message the COO..."
	ti.CharLimit = 2000
	ti.Width = 60

	return &ChatInput{
		input: ti,
		width: 80,
	}
}

// SetWidth sets the width of the input field.
func (f *ChatInput) SetWidth(width int) {
	f.width = width
	f.input.Width = width - 4 // Account for prompt and padding
}

// Take returns the trimmed current value and clears the field.
func (f *ChatInput) Take() string {
	text := strings.TrimSpace(f.input.Value())
	f.input.Reset()
	return text
}

// Update handles messages for the input field.
func (f *ChatInput) Update(msg tea.Msg) (*ChatInput, tea.Cmd) {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the input field.
func (f *ChatInput) View() string {
	promptStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(f.width - 2)

	prompt := promptStyle.Render("> ")
	return boxStyle.Render(prompt + f.input.View())
}

// Focus sets focus on the input field.
func (f *ChatInput) Focus() tea.Cmd {
	return f.input.Focus()
}

// Blur removes focus from the input field.
func (f *ChatInput) Blur() {
	f.input.Blur()
}
