package instance

import (
	"fmt"
	"io"
	"strings"
	"text/template"
)

var (
	gamemodes    = []string{"survival", "creative", "adventure", "spectator"}
	difficulties = []string{"peaceful", "easy", "normal", "hard"}
	toggles      = []string{"off", "on"}
)

// Properties are the server.properties values a new server can customize.
type Properties struct {
	LevelName  string
	MOTD       string
	Gamemode   string
	Difficulty string
	Hardcore   bool
	Whitelist  bool
	Port       int
}

// DefaultProperties are the settings used when nothing is changed.
func DefaultProperties(levelName, motd string, port int) Properties {
	return Properties{
		LevelName:  levelName,
		MOTD:       motd,
		Gamemode:   gamemodes[0],
		Difficulty: difficulties[1],
		Port:       port,
	}
}

var propertiesTemplate = template.Must(template.New("server.properties").Parse(`#Minecraft server properties
spawn-protection=0
max-tick-time=60000
generator-settings=
allow-nether=true
force-gamemode=false
enforce-whitelist={{.Whitelist}}
gamemode={{.Gamemode}}
broadcast-console-to-ops=true
enable-query=true
player-idle-timeout=5
difficulty={{.Difficulty}}
spawn-monsters=true
op-permission-level=3
pvp=true
snooper-enabled=true
level-type=DEFAULT
hardcore={{.Hardcore}}
enable-command-block=true
max-players=20
network-compression-threshold=256
resource-pack-sha1=
max-world-size=29999984
server-port={{.Port}}
server-ip=
spawn-npcs=true
allow-flight=false
level-name={{.LevelName}}
view-distance=10
resource-pack=
spawn-animals=true
white-list={{.Whitelist}}
generate-structures=true
online-mode=true
max-build-height=256
level-seed=
prevent-proxy-connections=false
motd={{.MOTD}}
enable-rcon=false
`))

// Write renders p as a server.properties file.
func (p Properties) Write(w io.Writer) error {
	if err := validChoice("gamemode", p.Gamemode, gamemodes); err != nil {
		return err
	}
	if err := validChoice("difficulty", p.Difficulty, difficulties); err != nil {
		return err
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("server port %d out of range", p.Port)
	}
	p.MOTD = strings.Join(strings.Fields(p.MOTD), " ")
	return propertiesTemplate.Execute(w, p)
}

func validChoice(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q", field, value)
}
