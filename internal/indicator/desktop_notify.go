package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsBus  = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
)

const (
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// notifyArgs builds a busctl Notify call. The hints map carries only the
// urgency byte.
func notifyArgs(appName string, replaceID uint32, summary string, urgency byte, timeoutMS int) []string {
	return []string{
		"--user", "call",
		notificationsBus, notificationsPath, notificationsBus,
		"Notify", "susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"audio-input-microphone",
		summary,
		"",
		"0",
		"1", "urgency", "y", strconv.Itoa(int(urgency)),
		strconv.Itoa(timeoutMS),
	}
}

// desktopNotify sends a notification and returns the ID assigned by the server.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, urgency byte, timeoutMS int) (uint32, error) {
	out, err := busctl(ctx, notifyArgs(appName, replaceID, summary, urgency, timeoutMS))
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}
	return parseNotificationID(out)
}

// parseNotificationID reads busctl's "u <id>" reply.
func parseNotificationID(out string) (uint32, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	args := []string{
		"--user", "call",
		notificationsBus, notificationsPath, notificationsBus,
		"CloseNotification", "u",
		strconv.FormatUint(uint64(id), 10),
	}
	if _, err := busctl(ctx, args); err != nil {
		return fmt.Errorf("desktop dismiss: %w", err)
	}
	return nil
}

func busctl(ctx context.Context, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
