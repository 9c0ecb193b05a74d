package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const profileRegistryABI = `[
	{"type":"function","name":"createProfile","stateMutability":"nonpayable","inputs":[{"name":"cid","type":"string"}],"outputs":[]},
	{"type":"function","name":"updateProfile","stateMutability":"nonpayable","inputs":[{"name":"newCid","type":"string"}],"outputs":[]},
	{"type":"function","name":"getProfile","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"hasProfile","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"lastUpdated","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"UPDATE_COOLDOWN","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"ProfileCreated","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"cid","type":"string","indexed":false}]},
	{"type":"event","name":"ProfileUpdated","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"oldCid","type":"string","indexed":false},{"name":"newCid","type":"string","indexed":false}]},
	{"type":"error","name":"CooldownActive","inputs":[{"name":"remaining","type":"uint256"}]},
	{"type":"error","name":"ProfileAlreadyExists","inputs":[]},
	{"type":"error","name":"ProfileNotFound","inputs":[]}
]`

const projectRegistryABI = `[
	{"type":"function","name":"registerProject","stateMutability":"nonpayable","inputs":[{"name":"metadataCID","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"updateProjectMetadata","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"newCID","type":"string"}],"outputs":[]},
	{"type":"function","name":"updateProjectStatus","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"status","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"getProject","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[{"name":"builder","type":"address"},{"name":"metadataCID","type":"string"},{"name":"status","type":"uint8"}]},
	{"type":"function","name":"nextProjectId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"ProjectCreated","anonymous":false,"inputs":[{"name":"id","type":"uint256","indexed":true},{"name":"builder","type":"address","indexed":true},{"name":"cid","type":"string","indexed":false}]},
	{"type":"event","name":"ProjectStatusUpdated","anonymous":false,"inputs":[{"name":"id","type":"uint256","indexed":true},{"name":"status","type":"uint8","indexed":false}]},
	{"type":"error","name":"InvalidStatusTransition","inputs":[{"name":"from","type":"uint8"},{"name":"to","type":"uint8"}]},
	{"type":"error","name":"NotBuilder","inputs":[]},
	{"type":"error","name":"ProjectNotFound","inputs":[]}
]`

var (
	profileABI = mustParse(profileRegistryABI)
	projectABI = mustParse(projectRegistryABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
