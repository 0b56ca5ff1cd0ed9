package httpapi

// routeTable maps request paths onto tool names. The table is fixed; any
// path not listed here (besides /health and /status) is a 404.
var routeTable = map[string]string{
	"/screenshot":     "screenshot",
	"/screenshot/app": "screenshot_app",
	"/click":          "click",
	"/keyboard/type":  "keyboard_type",
	"/keyboard/key":   "keyboard_press",
	"/mouse/move":     "mouse_move",
	"/mouse/scroll":   "mouse_scroll",
	"/mouse/drag":     "mouse_drag",
	"/mouse/position": "mouse_position",

	"/ui/elements":        "ui_elements",
	"/ui/windows":         "ui_windows",
	"/ui/focus":           "ui_focus",
	"/applications":       "list_applications",
	"/applications/focus": "focus_application",
	"/ocr":                "ocr_analyze",

	"/clipboard/read":  "clipboard_read",
	"/clipboard/write": "clipboard_write",
	"/system/info":     "system_info",
	"/wait":            "wait",

	"/fs/list":       "fs_list",
	"/fs/read":       "fs_read",
	"/fs/read-range": "fs_read_range",
	"/fs/write":      "fs_write",
	"/fs/delete":     "fs_delete",
	"/fs/move":       "fs_move",
	"/fs/search":     "fs_search",
	"/fs/grep":       "fs_grep",
	"/fs/patch":      "fs_patch",

	"/shell/exec":           "shell_exec",
	"/shell/session/start":  "shell_start_session",
	"/shell/session/input":  "shell_send_input",
	"/shell/session/stop":   "shell_stop_session",
	"/shell/session/output": "shell_read_output",
	"/shell/sessions":       "shell_list_sessions",

	"/browser/navigate":   "browser_navigate",
	"/browser/screenshot": "browser_screenshot",
	"/browser/content":    "browser_get_content",
	"/browser/execute":    "browser_execute",
	"/browser/tabs":       "browser_tabs",
}
