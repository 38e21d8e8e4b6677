package config

// DefaultFile is the config file written by install. Keys left commented
// fall back to the built-in defaults.
const DefaultFile = `# button-mirror configuration

# GPIO backend: cdev, rpio, periph or sim.
backend = "cdev"
chip = "gpiochip0"

# BCM numbers for cdev/rpio/periph, PORTB bit for sim.
# Unset or -1 picks the backend default (17/27, sim 2/5).
# button_pin = 17
# led_pin = 27

# 0 polls as fast as the loop runs.
poll = "0s"
heartbeat = "15m"

broker = "tcp://192.168.1.200:1883"
http_addr = ":80"
env_file = "/run/pi-helper.env"
log_level = "info"
`
