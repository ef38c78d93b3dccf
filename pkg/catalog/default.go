package catalog

// Built-in tests run in-process through `hfi-regress test <name>`.
const (
	ExeLoadModule  = "LoadModule"
	ExeIbVerbsPerf = "IbVerbsPerf"
	ExePerfReg     = "PerfReg"
	ExeMpiTest     = "MpiTest"
	ExeCntr        = "Cntr"
	ExeSnoop       = "Snoop"
	ExeSnoopFilter = "SnoopFilter"
	ExeSnoopIoctl  = "SnoopIoctl"
)

const (
	twoHosts    = "--nodelist %HOST[2]%"
	oneHost     = "--nodelist %HOST[1]%"
	loadArgs    = "--nodelist %HOST[2]% --hfisrc %HFI_SRC% --linuxsrc %LINUX_SRC% --sm %SM%"
	psmArgs     = "--psm %PSM_LIB% --psmopts %PSM_OPTS%"
	verbsQuick  = "default,upstream,quick,quick_upstream,verbs,installed,qib"
	stressQuick = `--args "-L 2 -M 2 -w 3 -m 1048576 -z"`
	stressLong  = `--args "-L 10 -M 10 -w 20 -z"`
	imbArgs     = `--args "-time 1 -iter 10"`
)

func entry(name, exe, args, types, desc string) Entry {
	return Entry{Name: name, Exe: exe, Args: args, Types: ParseTags(types), Desc: desc}
}

// DefaultEntries is the built-in test table in run order.
func DefaultEntries() []Entry {
	perfReg := entry("Perf-Regression", ExePerfReg, twoHosts, "perf,installed",
		"Run the required performance regression tests")
	perfReg.SkipSimulated = true

	return []Entry{
		entry("ModuleBuild", "build.sh", "%KBUILD_DIR% %HFI_SRC%", "misc",
			"Do a build of the driver."),
		entry("ModuleLoad", ExeLoadModule, loadArgs, "default,upstream,perf,qib,verbs",
			"Load the hfi.ko on 2 nodes, restart opensm and make sure active state is reached"),
		entry("IbSendLat-Verbs", "IbSendLat.py", twoHosts, verbsQuick,
			"Run ib_send_lat for 5 iterations."),
		entry("IbSendBwUD-Verbs", "IbSendBwUD.py", twoHosts, verbsQuick,
			"Run ib_send_bw for 5 iterations with various sizes using UD."),
		entry("IbSendBwRC-Verbs", "IbSendBwRC.py", twoHosts, verbsQuick,
			"Run ib_send_bw for 5 iterations with various sizes using RC."),
		entry("IbWriteBwRC-Verbs", "IbWriteBwRC.py", twoHosts, verbsQuick,
			"Run ib_write_bw for 5 iterations with various sizes using RC."),
		entry("IbWriteBwUC-Verbs", "IbWriteBwUC.py", twoHosts, verbsQuick,
			"Run ib_write_bw for 5 iterations with various sizes using UC."),
		entry("IbReadBwRC-Verbs", "IbReadBwRC.py", twoHosts, verbsQuick,
			"Run ib_read_bw for 5 iterations with various sizes using RC."),
		entry("IbSendBwUC-Verbs", "IbSendBwUC.py", twoHosts, verbsQuick,
			"Run ib_send_bw for 5 iterations with various sizes using UC."),
		entry("IbAtomicBw-Verbs", "IbAtomicBw.py", twoHosts, verbsQuick,
			"Run ib_atomic_bw for 5 iterations with the two RC atomic operations."),
		entry("IPoIB-Verbs", "IpoibPing.py", twoHosts, verbsQuick,
			"Run ping for 5 packets using ipoib."),
		entry("IbSendBwRC-8MB", "IbSendBwRC-a.py", twoHosts, "default,upstream,verbs,qib",
			"Run ib_send_bw for 16 iterations using sizes up to 2^23 using RC."),
		entry("IbSendBwRC-badSL", "IbSendBwRC-badSL.py", twoHosts, "bad",
			"Run ib_send_bw with bad SL values to ensure they fail to modify_qp"),
		entry("IPoIB-Qperf", "IpoibQperf.py", twoHosts, "default,upstream,verbs,installed,qib",
			"Run qperf/tcp_bw for 8 to 64 bytes."),
		entry("IbVerbsPerf", ExeIbVerbsPerf, twoHosts, "perf",
			"Run ib_write_bw, ib_read_bw, ib_send_lat and ib_read_lat over IPoIB addressing and keep the reports."),
		entry("OSU-MPI-Psm", "OsuMpi.py", twoHosts+" "+psmArgs, "mpi,mpipsm,default,upstream,qib",
			"Run OSU MPI benchmarks with PSM"),
		entry("OSU-MPI-Psm-One-node", "OsuMpi.py", oneHost+" "+psmArgs, "mpi,mpipsm,default,upstream,qib",
			"Run OSU MPI benchmarks on one node with PSM"),
		entry("OSU-MPI-Verbs", "OsuMpi.py", twoHosts+" --mpiverbs", "default,upstream,mpi,mpiverbs,verbs,qib",
			"Run OSU MPI benchmarks with verbs"),
		entry("OpcodeCounters", "OpcodeCounters.py", twoHosts, verbsQuick,
			"Run test opcode counters after quick tests have been run."),
		entry("IMB-Psm", "IMB.py", twoHosts+" "+psmArgs+" "+imbArgs, "default,upstream,mpi,mpipsm,qib",
			"Run full IMB suite with PSM"),
		entry("IMB-Verbs", "IMB.py", twoHosts+" --mpiverbs "+imbArgs, "default,upstream,mpi,mpiverbs,verbs,qib",
			"Run full IMB suite with verbs"),
		entry("HfiPktTest-PIO-Buffer", "HfiPktTest.py", oneHost+" --psm %PSM_LIB% --sw-diags %DIAG_LIB%", "diagtools,default,upstream,installed",
			"Run hfi_pkt_test PIO buffer benchmark."),
		entry("HfiPktTest-Ping-Pong", "HfiPktTest.py", twoHosts+" --psm %PSM_LIB% --sw-diags %DIAG_LIB%", "diagtools,default,upstream,installed",
			"Run hfi_pkt_test ping-pong benchmark."),
		entry("HfiPktSend", "HfiPktSend.py", oneHost+" --psm %PSM_LIB% --test-pkt-dir %TEST_PKT_DIR% --sw-diags %DIAG_LIB%", "diagtools,default,installed",
			"Run hfi_pkt_send tests."),
		entry("PortCounters", ExeCntr, twoHosts+" --psm %PSM_LIB% --sw-diags %DIAG_LIB%", "diagtools,installed",
			"Drive MPI traffic and reconcile hfistats, hfidiags and PMA port counters."),
		entry("MPI-Stress-Psm", "MpiStress.py", twoHosts+" "+psmArgs+" "+stressQuick, "mpi,mpipsm,quick,quick_upstream,installed",
			"Run quick MPI stress with PSM"),
		entry("MPI-Stress-Verbs", "MpiStress.py", twoHosts+" --mpiverbs "+stressQuick, "mpi,mpiverbs,verbs,quick,quick_upstream,installed",
			"Run quick MPI stress with verbs"),
		entry("MPI-Stress-PSM-Long", "MpiStress.py", twoHosts+" "+psmArgs+" "+stressLong, "mpi,mpipsm,default,upstream,integrity,qib",
			"Run MPI stress with PSM"),
		entry("MPI-Stress-Verbs-Long", "MpiStress.py", twoHosts+" --mpiverbs "+stressLong, "default,upstream,mpi,mpiverbs,verbs,integrity,qib",
			"Run MPI stress with verbs"),
		entry("Hpcc-Verbs", "Hpcc.py", twoHosts+" --mpiverbs", "default,upstream,mpi,mpiverbs,verbs,qib",
			"Run Hpcc with verbs"),
		entry("Hpcc-Psm", "Hpcc.py", twoHosts+" --psm %PSM_LIB%", "default,upstream,mpi,mpipsm,qib",
			"Run Hpcc with psm"),
		entry("SnoopHijack", ExeSnoop, twoHosts, "snoop,default,quick,installed",
			"Run snoop hijack tests."),
		entry("SnoopCapture", ExeSnoop, twoHosts+" --args capture", "snoop,installed",
			"Capture ping-pong traffic without intercepting it."),
		entry("PacketCapture", "Pcap.py", twoHosts, "snoop,default,quick,installed",
			"Run simple packet capture tests."),
		entry("SnoopIntegrity", "SnoopInteg.py", twoHosts, "snoop,default,quick,installed",
			"Sweep fabric and check MD5 sums of packets *requires ifs_fm*"),
		entry("SnoopFilter", ExeSnoopFilter, twoHosts, "snoop_unit,nosm",
			"Run snoop filter tests"),
		entry("SnoopIoctl", ExeSnoopIoctl, twoHosts, "snoop,default",
			"Run snoop IOCTL tests (modifies HFI state and kills SM)."),
		entry("8K-MTU-Verbs", "MTUTest.py", twoHosts+" --hfisrc %HFI_SRC% --linuxsrc %LINUX_SRC%", "mgmt,verbs",
			"Test 4K and 8K MTU with verbs traffic"),
		entry("Loopback-Test", "Loopback.py", oneHost+" --hfisrc %HFI_SRC% --linuxsrc %LINUX_SRC% "+psmArgs+" "+stressQuick, "default,upstream,quick,quick_upstream,nosm",
			"Test loopback. LCB on Simics, Serdes on FPGA, both on ASIC."),
		entry("RestoreSanity", ExeLoadModule, loadArgs, "default,upstream,quick,quick_upstream,qib,snoop",
			"Load the hfi.ko on 2 nodes, restart opensm and make sure active state is reached"),
		entry("MPI-Test-PSM", ExeMpiTest, twoHosts+" "+psmArgs+" --np %NP%", "mpipsm",
			"Run the Intel MPI Test Suite"),
		entry("MPI-Test-Verbs", ExeMpiTest, twoHosts+" --mpiverbs --np %NP%", "mpiverbs",
			"Run the Intel MPI Test Suite"),
		perfReg,
		entry("Adaptive-PIO", "AdaptivePIO.py", twoHosts, "default,upstream,verbs",
			"Run the Adaptive PIO regression tests"),
	}
}

// Default is the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return c
}
