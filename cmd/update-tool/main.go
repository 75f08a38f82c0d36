// update-tool updates or initializes a Tegra boot chain from a BUP
// package, per spec.md §6.1. It is deliberately single-purpose — like the
// teacher's cmd/gokr-updater, it is built directly on pflag rather than a
// Cobra command tree, since it has exactly one verb.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/tegraboot/bup-updater/internal/blockio"
	"github.com/tegraboot/bup-updater/internal/config"
	"github.com/tegraboot/bup-updater/internal/orchestrator"
	"github.com/tegraboot/bup-updater/internal/refplatform"
	"github.com/tegraboot/bup-updater/internal/soc"
	"github.com/tegraboot/bup-updater/internal/version"
)

// defaultConfigPath is the conventional location of the optional JSON
// defaults file (SPEC_FULL.md "Configuration"), analogous to the
// teacher's ~/gokrazy/<instance>/config.json.
const defaultConfigPath = "/etc/update-tool/config.json"

// defaultSMDStatePath is where FileSMD persists slot metadata when no
// vendor SMD partition driver is linked in.
const defaultSMDStatePath = "/var/lib/update-tool/smd.json"

func main() {
	log.SetFlags(0)

	var (
		initialize       bool
		slotSuffix       string
		dryRun           bool
		needsRepartition bool
		help             bool
		showVersion      bool
	)
	pflag.BoolVarP(&initialize, "initialize", "i", false, "first-time initialization of all boot partitions")
	pflag.StringVarP(&slotSuffix, "slot-suffix", "s", "", "update only the redundant partitions with this suffix (_a or _b); G2/G3 only")
	pflag.BoolVarP(&dryRun, "dry-run", "n", false, "log intended actions without writing")
	pflag.BoolVarP(&needsRepartition, "needs-repartition", "N", false, "enter repartition-check mode (implies --dry-run)")
	pflag.BoolVarP(&help, "help", "h", false, "usage text")
	pflag.BoolVar(&showVersion, "version", false, "print version string")
	pflag.Parse()

	if showVersion {
		fmt.Println(version.Read())
		os.Exit(0)
	}
	if help {
		pflag.Usage()
		os.Exit(0)
	}

	if initialize && slotSuffix != "" {
		log.Print("update-tool: -i/--initialize and -s/--slot-suffix are mutually exclusive")
		os.Exit(1)
	}
	switch slotSuffix {
	case "_a":
		slotSuffix = ""
	case "", "_b":
		// already normalized.
	default:
		log.Printf("update-tool: invalid -s/--slot-suffix %q (want _a or _b)", slotSuffix)
		os.Exit(1)
	}
	if needsRepartition {
		dryRun = true
	}

	if pflag.NArg() != 1 {
		log.Print("usage: update-tool [options] <bup-package-path>")
		os.Exit(1)
	}
	bupPackagePath := pflag.Arg(0)

	cfg, err := config.ReadFromFile(defaultConfigPath)
	if err != nil {
		log.Printf("update-tool: %v", err)
		os.Exit(1)
	}

	platform := &refplatform.Platform{Config: cfg}
	socType, err := platform.SoCType()
	if err != nil {
		log.Printf("update-tool: %v", err)
		os.Exit(1)
	}
	if socType != soc.G1 && socType != soc.G2 && socType != soc.G3 {
		log.Printf("update-tool: unrecognized SoC type %s", socType)
		os.Exit(1)
	}

	medium := soc.EMMC
	if cfg.MediumOverride == "SPI" {
		medium = soc.SPI
	}

	smd, err := refplatform.NewFileSMD(defaultSMDStatePath)
	if err != nil {
		log.Printf("update-tool: %v", err)
		os.Exit(1)
	}

	cc := orchestrator.Config{
		Platform:         platform,
		GPT:              &refplatform.StubGPT{},
		BUP:              &refplatform.StubBUP{},
		SMD:              smd,
		VER:              &refplatform.StubVER{},
		Checksum:         refplatform.Checksum{},
		BCTValidatorG2G3: refplatform.StubBCTValidatorG2G3,
		BCTValidatorG1:   refplatform.StubBCTValidatorG1,
		Medium:           medium,
		Initialize:       initialize,
		ExplicitSlot:     slotSuffix != "",
		SlotSuffix:       slotSuffix,
		DryRun:           dryRun,
	}

	if needsRepartition {
		code, err := orchestrator.New(cc).CheckRepartition()
		if err != nil {
			log.Printf("update-tool: %v", err)
		}
		os.Exit(code)
	}

	bootDevicePath := cc.BUP.BootDevice()
	if bootDevicePath == "" {
		log.Printf("update-tool: BUP reader for %q did not return a boot device path; a vendor BUP adapter must replace refplatform.StubBUP", bupPackagePath)
		os.Exit(1)
	}
	bootFD, err := os.OpenFile(bootDevicePath, os.O_RDWR, 0)
	if err != nil {
		log.Printf("update-tool: open boot device %q: %v", bootDevicePath, err)
		os.Exit(1)
	}
	defer bootFD.Close()
	bootDeviceSize, err := blockio.DeviceSize(bootFD)
	if err != nil {
		log.Printf("update-tool: size boot device %q: %v", bootDevicePath, err)
		os.Exit(1)
	}
	cc.BootFD = bootFD
	cc.BootDevicePath = bootDevicePath
	cc.BootDeviceSize = bootDeviceSize

	if gptDevicePath := cc.BUP.GPTDevice(); gptDevicePath != "" {
		gptFD, err := os.OpenFile(gptDevicePath, os.O_RDWR, 0)
		if err != nil {
			log.Printf("update-tool: open GPT device %q: %v", gptDevicePath, err)
			os.Exit(1)
		}
		defer gptFD.Close()
		cc.GPTFD = gptFD
	}

	code, err := orchestrator.New(cc).Run()
	if err != nil {
		log.Printf("update-tool: %v", err)
	}
	os.Exit(code)
}
